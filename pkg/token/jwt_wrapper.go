package token

// 這個變數會在測試時被覆蓋
var (
	GenerateJWTFunc = GenerateJWT
	ParseJWTFunc    = ParseJWT
)

// ParseJWTWrapper middleware 透過這個包裝函數驗證 token，測試時可替換 ParseJWTFunc
func ParseJWTWrapper(t string) (*Claims, error) {
	return ParseJWTFunc(t)
}
