package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword 返回明文密码的 bcrypt 哈希，代价因子取库默认值。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPasswordHash 报告明文密码与存储的 bcrypt 哈希是否匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
