package domain

// BootstrapData describes the first administrator account.
type BootstrapData struct {
	Pseudo   string
	Email    string
	Password string
}
