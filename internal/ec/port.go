package ec

// PortAccess is the capability to perform raw 8-bit port I/O. It is
// acquired once at startup and owned by the caller that drives the EC;
// nothing else in the program touches hardware ports.
type PortAccess interface {
	In(port uint16) (byte, error)
	Out(port uint16, value byte) error
}

const DefaultPortDevice = "/dev/port"
