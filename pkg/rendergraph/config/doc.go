/*
Package config provides type-safe configuration extraction from map[string]any.

Config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values. It is
how engine settings (budget pool capacities, logging, diagnostics paths) are
read from YAML or JSON without verbose type assertions.

# Basic Usage

	cfg := config.New(map[string]any{
	    "frame_budget": "16ms",
	    "max_frames":   3,
	    "validation":   true,
	})

	budget := cfg.Duration("frame_budget", 33*time.Millisecond) // 16ms
	frames := cfg.Int("max_frames", 2)                          // 3
	validate := cfg.Bool("validation", false)                   // true

# Nested Sections

Map traverses structured sections, like a budget pool table:

	pools:
	  device_memory:
	    capacity: 268435456
	  descriptor_sets:
	    capacity: 4096

	pools := cfg.Map("pools")
	for _, name := range pools.Keys() {
	    capacity := pools.Map(name).Uint64("capacity", 0)
	}

# File Loading

	cfg, err := config.FromFile("engine.yaml")

FromYAML and FromJSON parse raw bytes. All accessors return the provided
default on missing keys, wrong types, or lossy conversions.

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
