package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mess/internal/meal"
)

// ScanClaims is the payload embedded in a QR deep link: which student,
// which day, which meal. Tokens are short-lived so a screenshot of the
// code goes stale quickly.
type ScanClaims struct {
	StudentID string `json:"student_id"`
	Day       string `json:"day"` // 2006-01-02
	Meal      string `json:"meal"`
	jwt.RegisteredClaims
}

// IssueScanToken signs a scan token for one (student, day, meal).
func IssueScanToken(studentID string, day time.Time, m meal.Meal, issuer, key string, ttl time.Duration) (string, error) {
	claims := ScanClaims{
		StudentID: studentID,
		Day:       day.UTC().Format("2006-01-02"),
		Meal:      string(m),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   studentID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// ParseScanToken validates a scan token and returns its claims.
func ParseScanToken(tokenStr, key, issuer string) (ScanClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &ScanClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return ScanClaims{}, err
	}
	claims, ok := parsed.Claims.(*ScanClaims)
	if !ok || !parsed.Valid {
		return ScanClaims{}, errors.New("invalid scan token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return ScanClaims{}, errors.New("issuer mismatch")
	}
	if !meal.Meal(claims.Meal).Valid() {
		return ScanClaims{}, errors.New("unknown meal in scan token")
	}
	return *claims, nil
}
