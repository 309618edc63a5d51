package testtool

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer 通用函式來啟動測試容器，回傳 host 與第一個 exposed port 的對外 port
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	if err != nil {
		return nil, "", "", err
	}

	port, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, port.Port(), nil
}

// MongoRequest container request for a throwaway single-node mongo replica set
func MongoRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
}

// InitMongoReplicaSet rs.initiate 並等到成為 primary，transaction 需要 replica set
func InitMongoReplicaSet(ctx context.Context, container testcontainers.Container) error {
	script := `try { rs.status() } catch (e) { rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]}) }
while (!db.hello().isWritablePrimary) { sleep(100) }`

	code, out, err := container.Exec(ctx, []string{"mongosh", "--quiet", "--eval", script})
	if err != nil {
		return err
	}
	if code != 0 {
		msg, _ := io.ReadAll(out)
		return fmt.Errorf("rs.initiate exit code %d: %s", code, msg)
	}
	return nil
}

// MongoURI direct connection string for a container started from MongoRequest
func MongoURI(host, port string) string {
	return fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port)
}
