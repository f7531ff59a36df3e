package httpclient

import (
	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/version"
)

// ForEnvironment builds the client used for every call to a target API.
// Private addresses are only reachable when the environment allows them.
func ForEnvironment(cfg *config.Config, env config.Environment) *SaferClient {
	blockPrivate := !env.AllowPrivate
	return NewSaferClientWithOptions(cfg.Timeout(), SaferClientOptions{
		BlockPrivateIP: &blockPrivate,
		UserAgent:      version.Get().UserAgent(),
		BearerToken:    cfg.API.Token,
	})
}
