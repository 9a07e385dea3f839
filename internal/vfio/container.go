package vfio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultContainerPath is the system-wide VFIO container node.
const DefaultContainerPath = "/dev/vfio/vfio"

// Container owns an open /dev/vfio/vfio handle and the IOMMU model selected
// for it.
type Container struct {
	k    Kernel
	log  logrus.FieldLogger
	fd   int
	path string

	groups []*Group
	iommu  IOMMUModel
}

// Extension is the result of probing one IOMMU model.
type Extension struct {
	Model     IOMMUModel
	Supported bool
	Err       error
}

// OpenContainer opens the container node at path.
func OpenContainer(k Kernel, log logrus.FieldLogger, path string) (*Container, error) {
	fd, err := k.Open(path)
	if err != nil {
		return nil, newError(ResourceUnavailable, "open container "+path, err)
	}
	log.WithFields(logrus.Fields{"path": path, "fd": fd}).Debug("container opened")
	return &Container{k: k, log: log, fd: fd, path: path}, nil
}

// FD returns the container file descriptor.
func (c *Container) FD() int { return c.fd }

// VerifyAPIVersion requires the kernel to report exactly APIVersion. There
// is no negotiation.
func (c *Container) VerifyAPIVersion() (int, error) {
	v, err := c.k.APIVersion(c.fd)
	if err != nil {
		return v, newError(IncompatibleVersion, "query API version", err)
	}
	if v != APIVersion {
		return v, newError(IncompatibleVersion,
			fmt.Sprintf("unknown API version %d, expected %d", v, APIVersion), nil)
	}
	c.log.WithField("version", v).Debug("API version verified")
	return v, nil
}

// Extensions probes support for each model. Probe failures are recorded
// per model and never fail the call.
func (c *Container) Extensions(models ...IOMMUModel) []Extension {
	exts := make([]Extension, 0, len(models))
	for _, m := range models {
		ok, err := c.k.CheckExtension(c.fd, m)
		if err != nil {
			c.log.WithError(err).WithField("model", m).Debug("extension check failed")
		}
		exts = append(exts, Extension{Model: m, Supported: ok, Err: err})
	}
	return exts
}

// SelectIOMMU installs the strict Type1 model. The permissive no-IOMMU model
// is tried first and must be refused by the kernel; if it is accepted the
// container is unsafe and SecurityInvariantViolated is returned.
func (c *Container) SelectIOMMU() (IOMMUModel, error) {
	if c.iommu != 0 {
		return c.iommu, newError(IommuSetupFailed, "IOMMU model already set to "+c.iommu.String(), nil)
	}
	if len(c.groups) == 0 {
		return 0, newError(IommuSetupFailed, "select IOMMU", errors.New("no group attached to container"))
	}

	err := c.k.SetIOMMU(c.fd, NoIOMMU)
	if err == nil {
		return NoIOMMU, newError(SecurityInvariantViolated, "kernel incorrectly allowed no-iommu usage", nil)
	}
	c.log.WithError(err).Debug("no-iommu model refused")

	if err := c.k.SetIOMMU(c.fd, Type1IOMMU); err != nil {
		return 0, newError(IommuSetupFailed, "set IOMMU "+Type1IOMMU.String(), err)
	}
	c.iommu = Type1IOMMU
	c.log.WithField("model", c.iommu).Debug("IOMMU model selected")
	return c.iommu, nil
}

// IOMMU returns the selected model, or zero if none has been selected.
func (c *Container) IOMMU() IOMMUModel { return c.iommu }

// Close releases the container handle.
func (c *Container) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := c.k.Close(c.fd)
	c.fd = -1
	if err != nil {
		return fmt.Errorf("close container %s: %w", c.path, err)
	}
	return nil
}
