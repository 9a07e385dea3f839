package vfio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

// DefaultGroupDir holds one node per IOMMU group, named by group id.
const DefaultGroupDir = "/dev/vfio"

// Group is an open IOMMU group handle.
type Group struct {
	k    Kernel
	log  logrus.FieldLogger
	fd   int
	id   int
	path string

	flags     GroupFlags
	queried   bool
	container *Container
}

// GroupPath returns the device node of group id under dir.
func GroupPath(dir string, id int) string {
	return filepath.Join(dir, strconv.Itoa(id))
}

// OpenGroup opens the node of group id under dir.
func OpenGroup(k Kernel, log logrus.FieldLogger, dir string, id int) (*Group, error) {
	path := GroupPath(dir, id)
	if id < 0 {
		return nil, newError(GroupNotFound, "open group "+path, fmt.Errorf("invalid group id %d", id))
	}
	fd, err := k.Open(path)
	if err != nil {
		return nil, newError(GroupNotFound, "open group "+path, err)
	}
	log = log.WithField("group", id)
	log.WithField("fd", fd).Debug("group opened")
	return &Group{k: k, log: log, fd: fd, id: id, path: path}, nil
}

func (g *Group) ID() int { return g.id }

func (g *Group) FD() int { return g.fd }

// Status queries the group flags from the kernel.
func (g *Group) Status() (GroupFlags, error) {
	flags, err := g.k.GroupStatus(g.fd)
	if err != nil {
		return 0, newError(GroupNotViable, "query group status", err)
	}
	g.flags, g.queried = flags, true
	return flags, nil
}

// CheckViable fails with GroupNotViable unless every device in the group is
// bound to a VFIO driver.
func (g *Group) CheckViable() (GroupFlags, error) {
	flags, err := g.Status()
	if err != nil {
		return flags, err
	}
	g.log.WithField("flags", flags).Debug("group status")
	if flags&GroupFlagViable == 0 {
		return flags, newError(GroupNotViable, "group not viable, are all devices attached to vfio?", nil)
	}
	return flags, nil
}

// Attach sets c as the group's container. It is not idempotent.
func (g *Group) Attach(c *Container) error {
	if g.container != nil {
		return newError(AttachFailed, "set container", errors.New("group already attached"))
	}
	if !g.queried || g.flags&GroupFlagViable == 0 {
		if _, err := g.CheckViable(); err != nil {
			return err
		}
	}
	if err := g.k.SetContainer(g.fd, c.fd); err != nil {
		return newError(AttachFailed, "failed to set container on group", err)
	}
	g.container = c
	c.groups = append(c.groups, g)
	g.log.WithField("container", c.fd).Debug("group attached")
	return nil
}

// Container returns the container the group is attached to, or nil.
func (g *Group) Container() *Container { return g.container }

// Device resolves addr within the group. The group must be attached to a
// container that has an IOMMU model selected.
func (g *Group) Device(addr pci.Address) (*Device, error) {
	name := addr.String()
	if g.container == nil {
		return nil, newError(AttachFailed, "get device "+name, errors.New("group is not attached to a container"))
	}
	if g.container.IOMMU() == 0 {
		return nil, newError(IommuSetupFailed, "get device "+name, errors.New("container has no IOMMU model selected"))
	}
	fd, err := g.k.DeviceFD(g.fd, name)
	if err != nil {
		return nil, newError(DeviceNotFound, "failed to get device "+name, err)
	}
	log := g.log.WithField("device", name)
	log.WithField("fd", fd).Debug("device resolved")
	return &Device{k: g.k, log: log, fd: fd, addr: addr, group: g}, nil
}

// Close releases the group handle. The kernel detaches the group from its
// container when the last reference goes away.
func (g *Group) Close() error {
	if g.fd < 0 {
		return nil
	}
	err := g.k.Close(g.fd)
	g.fd = -1
	if err != nil {
		return fmt.Errorf("close group %s: %w", g.path, err)
	}
	return nil
}
