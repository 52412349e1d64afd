package container

// ImageConfig contains the bitcoind image used by the dockertest backend.
type ImageConfig struct {
	BitcoindRepository string
	BitcoindVersion    string
}

const (
	dockerBitcoindRepository = "lncm/bitcoind"
	dockerBitcoindVersionTag = "v27.0"
)

// NewImageConfig returns the image config, falling back to the default
// bitcoind image for empty fields.
func NewImageConfig(repository, version string) ImageConfig {
	cfg := ImageConfig{
		BitcoindRepository: dockerBitcoindRepository,
		BitcoindVersion:    dockerBitcoindVersionTag,
	}
	if repository != "" {
		cfg.BitcoindRepository = repository
	}
	if version != "" {
		cfg.BitcoindVersion = version
	}

	return cfg
}
