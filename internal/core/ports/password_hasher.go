package ports

// PasswordHasher hashes and verifies plaintext secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}
