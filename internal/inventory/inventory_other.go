//go:build !linux

package inventory

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

var errUnsupported = errors.New("sysfs is only available on linux")

type Inventory struct{}

func NewInventory(logrus.FieldLogger, string) (*Inventory, error) {
	return nil, errUnsupported
}

func (i *Inventory) Device(pci.Address) (*DeviceDetail, error) { return nil, errUnsupported }

func (i *Inventory) Groups() ([]Group, error) { return nil, errUnsupported }

func (i *Inventory) Driver(string) string { return "" }
