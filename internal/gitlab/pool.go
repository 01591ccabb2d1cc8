package gitlab

import (
	"sync"

	"ci-component-catalog/internal/domain"

	"go.uber.org/zap"
)

// Pool hands out one Client per GitLab instance host, so sources spread
// across several instances share connections per host. Tokens are resolved
// per instance with a fallback default.
type Pool struct {
	defaultToken string
	tokens       map[string]string
	logger       *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

var _ domain.ClientPool = (*Pool)(nil)

// NewPool creates a client pool. tokens maps instance host to access token;
// instances without an entry use defaultToken.
func NewPool(defaultToken string, tokens map[string]string, logger *zap.Logger) *Pool {
	return &Pool{
		defaultToken: defaultToken,
		tokens:       tokens,
		logger:       logger,
		clients:      make(map[string]*Client),
	}
}

// ClientFor returns the client for an instance, creating it on first use.
func (p *Pool) ClientFor(instance string) (domain.RemoteClient, error) {
	if instance == "" {
		instance = domain.DefaultInstance
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[instance]; ok {
		return client, nil
	}

	token := p.defaultToken
	if t, ok := p.tokens[instance]; ok {
		token = t
	}

	client, err := NewClient(instance, token, p.logger)
	if err != nil {
		return nil, err
	}
	p.clients[instance] = client
	return client, nil
}
