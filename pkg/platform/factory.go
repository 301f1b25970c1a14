package platform

// NewPlatform creates the host platform implementation
func NewPlatform() Platform {
	return NewBasePlatform()
}
