package security

import (
	"crypto/rand"
	"math/big"
)

const (
	tempPasswordLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	tempPasswordDigits  = "0123456789"
)

// NewTempPassword builds an 8-character temporary password: four mixed-case
// letters and four digits, shuffled so the digits are not always trailing.
// Selection and shuffling both draw from crypto/rand.
func NewTempPassword() (string, error) {
	chars := make([]byte, 0, 8)
	for i := 0; i < 4; i++ {
		c, err := randomByte(tempPasswordLetters)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for i := 0; i < 4; i++ {
		c, err := randomByte(tempPasswordDigits)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}
	return string(chars), nil
}

func randomByte(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
