package store

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"codedrop/internal/models"
)

const codeMaxAttempts = 20

var fetchCodeSpan = big.NewInt(models.FetchCodeMax - models.FetchCodeMin + 1)

// GenerateFetchCode returns a six-digit code drawn uniformly from [100000, 999999].
// It retries on collisions using the provided exists function.
func GenerateFetchCode(exists func(models.FetchCode) (bool, error)) (models.FetchCode, error) {
	for i := 0; i < codeMaxAttempts; i++ {
		code, err := randomFetchCode()
		if err != nil {
			return "", err
		}
		if exists == nil {
			return code, nil
		}
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique fetch code")
}

// GenerateBlobID returns a new store-assigned blob id.
func GenerateBlobID() string {
	return uuid.NewString()
}

// ValidBlobID reports whether id has the shape GenerateBlobID produces.
func ValidBlobID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.String() == id
}

func randomFetchCode() (models.FetchCode, error) {
	n, err := rand.Int(rand.Reader, fetchCodeSpan)
	if err != nil {
		return "", err
	}
	return models.FetchCode(fmt.Sprintf("%d", n.Int64()+models.FetchCodeMin)), nil
}
