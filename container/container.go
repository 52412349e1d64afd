package container

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	bitcoindContainerName = "bitcoind"
	bitcoindRPCPort       = "18443/tcp"
)

// Manager is a wrapper around the Docker pool used by the dockertest backend.
// It keeps track of every container it started so they can be purged.
type Manager struct {
	cfg       ImageConfig
	pool      *dockertest.Pool
	resources map[string]*dockertest.Resource
}

// NewManager connects to the Docker daemon from the environment.
func NewManager(cfg ImageConfig) (*Manager, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to docker: %w", err)
	}

	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("docker daemon is not reachable: %w", err)
	}

	return &Manager{
		cfg:       cfg,
		pool:      pool,
		resources: make(map[string]*dockertest.Resource),
	}, nil
}

// RunBitcoindResource starts a regtest bitcoind container with its RPC port
// published on 127.0.0.1:rpcPort.
func (m *Manager) RunBitcoindResource(
	name string,
	rpcPort int,
	rpcUser string,
	rpcPass string,
) (*dockertest.Resource, error) {
	containerName := fmt.Sprintf("%s-%s", bitcoindContainerName, name)

	resource, err := m.pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       containerName,
			Repository: m.cfg.BitcoindRepository,
			Tag:        m.cfg.BitcoindVersion,
			User:       "root:root",
			Labels: map[string]string{
				"regtest": "bitcoind",
			},
			ExposedPorts: []string{
				bitcoindRPCPort,
			},
			Cmd: []string{
				"-regtest",
				"-txindex",
				"-rpcuser=" + rpcUser,
				"-rpcpassword=" + rpcPass,
				"-rpcallowip=0.0.0.0/0",
				"-rpcbind=0.0.0.0",
				"-fallbackfee=0.0002",
			},
		},
		func(config *docker.HostConfig) {
			config.PortBindings = map[docker.Port][]docker.PortBinding{
				bitcoindRPCPort: {{HostIP: "127.0.0.1", HostPort: strconv.Itoa(rpcPort)}},
			}
			config.PublishAllPorts = false
		},
		noRestart,
	)
	if err != nil {
		return nil, err
	}

	m.resources[containerName] = resource
	return resource, nil
}

// ClearResources removes all outstanding Docker resources created by the Manager.
func (m *Manager) ClearResources() error {
	for name, resource := range m.resources {
		if err := m.pool.Purge(resource); err != nil {
			return fmt.Errorf("failed to purge %s: %w", name, err)
		}
		delete(m.resources, name)
	}

	return nil
}

func noRestart(config *docker.HostConfig) {
	// in this case, we don't want the nodes to restart on failure
	config.RestartPolicy = docker.RestartPolicy{
		Name: "no",
	}
}

// BitcoindNode adapts a Manager to the Up/Down lifecycle used for compose
// files, so both backends can be driven the same way.
type BitcoindNode struct {
	m       *Manager
	name    string
	rpcPort int
	rpcUser string
	rpcPass string
}

func NewBitcoindNode(m *Manager, name string, rpcPort int, rpcUser, rpcPass string) *BitcoindNode {
	return &BitcoindNode{
		m:       m,
		name:    name,
		rpcPort: rpcPort,
		rpcUser: rpcUser,
		rpcPass: rpcPass,
	}
}

func (n *BitcoindNode) Up(_ context.Context) error {
	_, err := n.m.RunBitcoindResource(n.name, n.rpcPort, n.rpcUser, n.rpcPass)
	return err
}

func (n *BitcoindNode) Down(_ context.Context) error {
	return n.m.ClearResources()
}
