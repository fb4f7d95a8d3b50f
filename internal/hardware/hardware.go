package hardware

import (
	"errors"
	"net"
	"sort"
)

var ErrNoInterface = errors.New("no usable network interface found")

// Manager answers questions about the node's hardware.
type Manager interface {
	PrimaryMACAddress() (string, error)
}

// GenericManager inspects the host's network interfaces through the net package.
type GenericManager struct {
	interfaces func() ([]net.Interface, error)
}

func NewGenericManager() *GenericManager {
	return &GenericManager{interfaces: net.Interfaces}
}

// PrimaryMACAddress returns the address of the lowest-indexed interface that is up, is not
// a loopback and has a hardware address.
func (m *GenericManager) PrimaryMACAddress() (string, error) {
	ifaces, err := m.interfaces()
	if err != nil {
		return "", err
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Index < ifaces[j].Index })

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", ErrNoInterface
}
