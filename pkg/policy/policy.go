// Package policy decides which request categories a session may use. The
// decision is a Rego policy so properties can swap in their own rules without
// a rebuild; the embedded default restricts ordering and ticket raising to
// registered guests.
package policy

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed access.rego
var defaultPolicy string

const accessQuery = "data.concierge.access.allow"

// Gate evaluates the access policy for one category and guest profile.
type Gate struct {
	query rego.PreparedEvalQuery
}

type GateOption func(*gateConfig)

type gateConfig struct {
	policyDir string
}

// WithPolicyDir loads every .rego file under dir instead of the embedded
// default policy.
func WithPolicyDir(dir string) GateOption {
	return func(c *gateConfig) {
		c.policyDir = dir
	}
}

// New compiles the access policy and prepares it for evaluation.
func New(ctx context.Context, opts ...GateOption) (*Gate, error) {
	var cfg gateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	modules, err := loadModules(cfg.policyDir)
	if err != nil {
		return nil, err
	}

	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(accessQuery))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare access policy")
	}

	return &Gate{query: prepared}, nil
}

func loadModules(policyDir string) ([]func(*rego.Rego), error) {
	if policyDir == "" {
		return []func(*rego.Rego){rego.Module("access.rego", defaultPolicy)}, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return nil, goerr.New("no policy files found", goerr.V("dir", policyDir))
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}
	return modules, nil
}

// Allow reports whether the guest may use the given request category. A
// policy that produces no result denies.
func (g *Gate) Allow(ctx context.Context, category model.Intent, profile model.GuestProfile) (bool, error) {
	input := map[string]any{
		"category": string(category),
		"guest": map[string]any{
			"registered": profile.RegisteredGuest(),
			"room":       profile.RoomAllotted,
		},
	}

	rs, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate access policy", goerr.V("category", category))
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, goerr.New("access policy returned non-boolean result", goerr.V("category", category))
	}
	return allowed, nil
}
