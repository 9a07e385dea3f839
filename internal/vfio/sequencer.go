package vfio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/vfio-probe/internal/pci"
)

// Mode selects how regions are handled once the device is resolved.
type Mode int

const (
	// Focused queries and maps only the primary region. Every failure is
	// fatal.
	Focused Mode = iota
	// Enumerate walks every region. Query and mapping failures are recorded
	// on the region and enumeration continues.
	Enumerate
)

func (m Mode) String() string {
	if m == Enumerate {
		return "enumerate"
	}
	return "focused"
}

// State is a step of the bring-up state machine.
type State int

const (
	Init State = iota
	ContainerOpen
	APIVerified
	GroupOpen
	GroupViable
	Attached
	IOMMUSelected
	DeviceResolved
	InfoQueried
	PrimaryRegionQueried
	Mapped
	Unmapped
	RegionsEnumerated
	Failed
)

var stateNames = [...]string{
	Init:                 "Init",
	ContainerOpen:        "ContainerOpen",
	APIVerified:          "ApiVerified",
	GroupOpen:            "GroupOpen",
	GroupViable:          "GroupViable",
	Attached:             "Attached",
	IOMMUSelected:        "IommuSelected",
	DeviceResolved:       "DeviceResolved",
	InfoQueried:          "InfoQueried",
	PrimaryRegionQueried: "Region0Queried",
	Mapped:               "Mapped",
	Unmapped:             "Unmapped",
	RegionsEnumerated:    "RegionsEnumerated",
	Failed:               "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options configures one bring-up run.
type Options struct {
	ContainerPath string
	GroupDir      string
	GroupID       int
	Address       string
	Mode          Mode

	// PrimaryRegion is the region the focused workflow maps. It defaults to
	// 0, BAR0 on vfio-pci, which holds the register file for most devices
	// but is a property of the device family rather than of VFIO.
	PrimaryRegion uint32

	// DumpBytes is how many leading bytes of each mapped region are copied
	// into the result.
	DumpBytes int
}

// RegionResult is what was learned about one region.
type RegionResult struct {
	RegionInfo
	Mapped bool
	Head   []byte
	Err    error
}

// Result accumulates everything observed during a run, including the
// partial state of a failed run.
type Result struct {
	Address    pci.Address
	APIVersion int
	GroupFlags GroupFlags
	Extensions []Extension
	IOMMU      IOMMUModel
	Device     DeviceInfo
	Regions    []RegionResult
	Trace      []State
}

// Sequencer runs the VFIO bring-up handshake once.
type Sequencer struct {
	k    Kernel
	log  logrus.FieldLogger
	opts Options

	state State
	res   *Result

	container *Container
	group     *Group
	device    *Device
	mapping   *Mapping
}

type stage struct {
	to  State
	run func() error
}

// NewSequencer returns a Sequencer for opts. Empty paths fall back to the
// system defaults.
func NewSequencer(k Kernel, log logrus.FieldLogger, opts Options) *Sequencer {
	if opts.ContainerPath == "" {
		opts.ContainerPath = DefaultContainerPath
	}
	if opts.GroupDir == "" {
		opts.GroupDir = DefaultGroupDir
	}
	return &Sequencer{
		k:     k,
		log:   log,
		opts:  opts,
		state: Init,
		res:   &Result{Trace: []State{Init}},
	}
}

// State returns the current state of the machine.
func (s *Sequencer) State() State { return s.state }

// Run executes the handshake. Stages run strictly in order; the first
// failure moves the machine to Failed and stops the run. Every acquired
// resource is released in reverse order before Run returns, on success and
// on failure. The returned Result is never nil.
func (s *Sequencer) Run() (*Result, error) {
	if s.state != Init {
		return s.res, fmt.Errorf("sequencer already ran, state %s", s.state)
	}
	defer func() {
		if rerr := s.release(); rerr != nil {
			s.log.WithError(rerr).Warn("releasing VFIO resources")
		}
	}()

	addr, err := pci.ParseAddress(s.opts.Address)
	if err != nil {
		return s.fail(newError(DeviceNotFound, "parse device address", err))
	}
	s.res.Address = addr

	for _, st := range s.stages(addr) {
		if err := st.run(); err != nil {
			return s.fail(err)
		}
		s.advance(st.to)
	}
	return s.res, nil
}

func (s *Sequencer) stages(addr pci.Address) []stage {
	stages := []stage{
		{ContainerOpen, s.openContainer},
		{APIVerified, s.verifyAPI},
		{GroupOpen, s.openGroup},
		{GroupViable, s.checkViable},
		{Attached, s.attach},
		{IOMMUSelected, s.selectIOMMU},
		{DeviceResolved, func() error { return s.resolveDevice(addr) }},
		{InfoQueried, s.queryInfo},
	}
	if s.opts.Mode == Enumerate {
		return append(stages, stage{RegionsEnumerated, s.enumerate})
	}
	return append(stages,
		stage{PrimaryRegionQueried, s.queryPrimary},
		stage{Mapped, s.mapPrimary},
		stage{Unmapped, s.unmapPrimary},
	)
}

func (s *Sequencer) advance(to State) {
	s.state = to
	s.res.Trace = append(s.res.Trace, to)
	s.log.WithField("state", to).Debug("bring-up step complete")
}

func (s *Sequencer) fail(err error) (*Result, error) {
	s.state = Failed
	s.res.Trace = append(s.res.Trace, Failed)
	s.log.WithError(err).WithField("kind", KindOf(err)).Debug("bring-up failed")
	return s.res, err
}

func (s *Sequencer) openContainer() error {
	c, err := OpenContainer(s.k, s.log, s.opts.ContainerPath)
	if err != nil {
		return err
	}
	s.container = c
	return nil
}

func (s *Sequencer) verifyAPI() error {
	v, err := s.container.VerifyAPIVersion()
	s.res.APIVersion = v
	return err
}

func (s *Sequencer) openGroup() error {
	g, err := OpenGroup(s.k, s.log, s.opts.GroupDir, s.opts.GroupID)
	if err != nil {
		return err
	}
	s.group = g
	return nil
}

func (s *Sequencer) checkViable() error {
	flags, err := s.group.CheckViable()
	s.res.GroupFlags = flags
	return err
}

func (s *Sequencer) attach() error {
	if err := s.group.Attach(s.container); err != nil {
		return err
	}
	flags, err := s.group.Status()
	if err != nil {
		s.log.WithError(err).Debug("group status after attach failed")
		return nil
	}
	s.res.GroupFlags = flags
	return nil
}

func (s *Sequencer) selectIOMMU() error {
	s.res.Extensions = s.container.Extensions(Type1IOMMU, NoIOMMU, Type1v2IOMMU)
	model, err := s.container.SelectIOMMU()
	s.res.IOMMU = model
	return err
}

func (s *Sequencer) resolveDevice(addr pci.Address) error {
	d, err := s.group.Device(addr)
	if err != nil {
		return err
	}
	s.device = d
	return nil
}

func (s *Sequencer) queryInfo() error {
	info, err := s.device.Info()
	s.res.Device = info
	return err
}

func (s *Sequencer) queryPrimary() error {
	r, err := s.device.Region(s.opts.PrimaryRegion)
	if err != nil {
		return err
	}
	s.res.Regions = append(s.res.Regions, RegionResult{RegionInfo: r})
	return nil
}

func (s *Sequencer) mapPrimary() error {
	rr := &s.res.Regions[len(s.res.Regions)-1]
	m, err := s.device.Map(rr.RegionInfo)
	if err != nil {
		rr.Err = err
		return err
	}
	s.mapping = m
	rr.Mapped = true
	rr.Head, err = m.Head(s.opts.DumpBytes)
	return err
}

func (s *Sequencer) unmapPrimary() error {
	m := s.mapping
	s.mapping = nil
	if err := m.Close(); err != nil {
		return newError(MappingFailed, "unmap primary region", err)
	}
	return nil
}

func (s *Sequencer) enumerate() error {
	for i := uint32(0); i < s.res.Device.NumRegions; i++ {
		s.res.Regions = append(s.res.Regions, s.inspectRegion(i))
	}
	return nil
}

func (s *Sequencer) inspectRegion(index uint32) RegionResult {
	log := s.log.WithField("region", index)
	r, err := s.device.Region(index)
	if err != nil {
		log.WithError(err).Warn("skipping region")
		return RegionResult{RegionInfo: RegionInfo{Index: index}, Err: err}
	}
	rr := RegionResult{RegionInfo: r}
	if !r.Flags.Mappable() {
		return rr
	}

	m, err := s.device.Map(r)
	if err != nil {
		log.WithError(err).Warn("mmap failed")
		rr.Err = err
		return rr
	}
	rr.Mapped = true
	rr.Head, rr.Err = m.Head(s.opts.DumpBytes)
	if err := m.Close(); err != nil {
		log.WithError(err).Warn("munmap failed")
		rr.Err = errors.Join(rr.Err, err)
	}
	return rr
}

// release closes every acquired resource, most recent first.
func (s *Sequencer) release() error {
	var errs []error
	if s.mapping != nil {
		errs = append(errs, s.mapping.Close())
		s.mapping = nil
	}
	if s.device != nil {
		errs = append(errs, s.device.Close())
		s.device = nil
	}
	if s.group != nil {
		errs = append(errs, s.group.Close())
		s.group = nil
	}
	if s.container != nil {
		errs = append(errs, s.container.Close())
		s.container = nil
	}
	return errors.Join(errs...)
}
