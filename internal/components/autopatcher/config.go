package autopatcher

type Config struct {
	ManifestPath string `yaml:"manifest_path" toml:"manifest_path"`
	// RootDir is the directory manifest paths are relative to. Empty means
	// the manifest's own directory.
	RootDir      string `yaml:"root_dir" toml:"root_dir"`
	Workers      int    `yaml:"workers" toml:"workers"`
	CheckOnStart bool   `yaml:"check_on_start" toml:"check_on_start"`
}

func DefaultConfig() Config {
	return Config{Workers: 4}
}
