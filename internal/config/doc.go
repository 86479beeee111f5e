// Package config provides the configuration system for buildscan.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← BUILDSCAN_SECTION_SETTING
//	├─────────────────────────────┤
//	│  2. Project File            │  ← buildscan.toml or buildscan.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Layers are plain nested maps merged with loader.DeepMerge, then decoded
// once into a typed Config. A value of the wrong type is an error, not a
// silent fallback to the default.
//
// # Basic Usage
//
//	cfg, err := config.Load(config.Options{File: "buildscan.toml"})
//	if err != nil {
//		return err
//	}
//	h := build.NewHandler(cfg.Handler())
//
// Pattern lists accept either a list or a single string with entries
// separated by ';':
//
//	[patterns]
//	warningMatch = ["^LINT: ", "deprecated"]
//	warningException = "third_party/;generated/"
package config
