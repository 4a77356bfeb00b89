package reservation

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxCodeAttempts は予約コード衝突時の再生成を含めた最大試行回数
const MaxCodeAttempts = 3

// CodePrefix は予約コードの接頭辞
const CodePrefix = "RES-"

// 紛らわしい文字（I, L, O, U）を除いた Crockford base32
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// CodeGenerator は予約コードを生成する
type CodeGenerator interface {
	Generate(now time.Time) string
}

// RandomCodeGenerator はミリ秒時刻と40bitの乱数を組み合わせた予約コードを生成する
// 形式: RES-<ミリ秒の36進数>-<8文字の base32>
type RandomCodeGenerator struct{}

// NewCodeGenerator はデフォルトの CodeGenerator を返す
func NewCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{}
}

// Generate は新しい予約コードを返す
func (g *RandomCodeGenerator) Generate(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return CodePrefix + ts + "-" + randomPart()
}

// randomPart は UUIDv4 の先頭5バイト（バージョンビットを含まない）を base32 にする
func randomPart() string {
	id := uuid.New()
	var v uint64
	for _, b := range id[:5] {
		v = v<<8 | uint64(b)
	}
	var buf [8]byte
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = crockford[v&0x1f]
		v >>= 5
	}
	return string(buf[:])
}

// IsWellFormed は文字列が予約コードの形式に沿っているかを返す
func IsWellFormed(code string) bool {
	if !strings.HasPrefix(code, CodePrefix) {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(code, CodePrefix), "-")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 8 {
		return false
	}
	for _, c := range parts[1] {
		if !strings.ContainsRune(crockford, c) {
			return false
		}
	}
	return true
}
