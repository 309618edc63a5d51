package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"daycare_messaging_service/pkg/config"
	"daycare_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof 非 production 環境時在 addr 啟動 pprof 監控伺服器
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
}

// 確認 pprof 是否啟動: curl http://localhost:6060/debug/pprof/
// CPU: go tool pprof http://localhost:6060/debug/pprof/profile?seconds=30
// Goroutine: go tool pprof http://localhost:6060/debug/pprof/goroutine
