package lifecycle

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

const (
	// VerificationCodeLength 签到码长度
	VerificationCodeLength = 6
	verificationAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateVerificationCode 生成 6 位大写字母/数字签到码
func GenerateVerificationCode() (string, error) {
	buf := make([]byte, VerificationCodeLength)
	max := big.NewInt(int64(len(verificationAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = verificationAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidVerificationCode 校验签到码格式
func ValidVerificationCode(code string) bool {
	if len(code) != VerificationCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// MatchVerificationCode 精确匹配（区分大小写）
func MatchVerificationCode(expected, submitted string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}
