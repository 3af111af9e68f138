package service

import "golang.org/x/crypto/bcrypt"

// PasswordHasher encapsula bcrypt con costo configurable.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher crea un hasher; costos fuera de rango caen al default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash genera un hash bcrypt con salt por llamada embebido en el resultado.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// Verify compara en tiempo constante; un hash corrupto nunca valida.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
