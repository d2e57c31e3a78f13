// Package config loads the simulator's configuration object (C12), built
// once at startup and passed into kernel.New, per the "Configuration
// object" design note in spec.md ยง9 — nothing in this repo reads config
// ambiently. The file format is INI with the three sections spec.md ยง6
// names (MEMORY, SIMULATION, LOGS), parsed with gopkg.in/ini.v1.
package config

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Memory holds the MEMORY section: capacities in KB. PageKB must evenly
// divide both RAMKB and SwapKB, per spec.md ยง6.
type Memory struct {
	RAMKB  int
	SwapKB int
	PageKB int
}

// Simulation holds the SIMULATION section. These knobs drive the (out of
// scope) workload generator; the kernel itself never reads them. The loader
// parses and exposes them so the driver has one place to get its
// configuration from; Validate does not check them, and a value that does
// not parse as an integer falls back to its default.
type Simulation struct {
	MaxProcesses        int
	ProcessSizeMinKB    int
	ProcessSizeMaxKB    int
	ProcessLifetimeMin  int
	ProcessLifetimeMax  int
	ProcessArrivalMin   int
	ProcessArrivalMax   int
}

// Logs holds the LOGS section.
type Logs struct {
	EnableLogs bool
	LogFile    string
}

// Config is the fully parsed, validated configuration object.
type Config struct {
	Memory     Memory
	Simulation Simulation
	Logs       Logs
}

// Default returns a small, internally consistent configuration suitable
// for tests and examples.
func Default() Config {
	return Config{
		Memory: Memory{RAMKB: 64, SwapKB: 64, PageKB: 4},
		Simulation: Simulation{
			MaxProcesses:       16,
			ProcessSizeMinKB:   4,
			ProcessSizeMaxKB:   32,
			ProcessLifetimeMin: 5,
			ProcessLifetimeMax: 50,
			ProcessArrivalMin:  0,
			ProcessArrivalMax:  20,
		},
		Logs: Logs{EnableLogs: false, LogFile: "ksim.log"},
	}
}

// Load parses an INI file at path into a Config and validates it.
func Load(path string) (Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: loading %s", path)
	}
	return FromFile(f)
}

// FromFile builds a Config from an already-parsed ini.File, exported
// separately so tests can build one from ini.LoadSources(data) without a
// file on disk.
func FromFile(f *ini.File) (Config, error) {
	cfg := Config{}

	mem := f.Section("MEMORY")
	cfg.Memory.RAMKB = mem.Key("ram_size").MustInt(64)
	cfg.Memory.SwapKB = mem.Key("swap_size").MustInt(0)
	cfg.Memory.PageKB = mem.Key("page_size").MustInt(4)

	sim := f.Section("SIMULATION")
	cfg.Simulation.MaxProcesses = sim.Key("max_processes").MustInt(16)
	cfg.Simulation.ProcessSizeMinKB = sim.Key("process_size_min").MustInt(4)
	cfg.Simulation.ProcessSizeMaxKB = sim.Key("process_size_max").MustInt(32)
	cfg.Simulation.ProcessLifetimeMin = sim.Key("process_lifetime_min").MustInt(5)
	cfg.Simulation.ProcessLifetimeMax = sim.Key("process_lifetime_max").MustInt(50)
	cfg.Simulation.ProcessArrivalMin = sim.Key("process_arrival_min").MustInt(0)
	cfg.Simulation.ProcessArrivalMax = sim.Key("process_arrival_max").MustInt(20)

	logs := f.Section("LOGS")
	cfg.Logs.EnableLogs = logs.Key("enable_logs").MustBool(false)
	cfg.Logs.LogFile = logs.Key("log_file").MustString("ksim.log")

	return cfg, cfg.Validate()
}

// Validate enforces spec.md ยง6's constraint that page_size divides both
// ram_size and swap_size, plus the basic positivity every size needs.
func (c Config) Validate() error {
	if c.Memory.PageKB <= 0 {
		return errors.New("config: page_size must be > 0")
	}
	if c.Memory.RAMKB < 0 || c.Memory.SwapKB < 0 {
		return errors.New("config: ram_size and swap_size must be >= 0")
	}
	if c.Memory.RAMKB%c.Memory.PageKB != 0 {
		return errors.Errorf("config: page_size %d does not divide ram_size %d", c.Memory.PageKB, c.Memory.RAMKB)
	}
	if c.Memory.SwapKB%c.Memory.PageKB != 0 {
		return errors.Errorf("config: page_size %d does not divide swap_size %d", c.Memory.PageKB, c.Memory.SwapKB)
	}
	return nil
}
