package embed

// DashScope embedding models.
const (
	// ModelDashScopeV4 supports 100+ languages, dimensions 64–2048, default 1024.
	ModelDashScopeV4 = "text-embedding-v4"

	// ModelDashScopeV3 supports 50+ languages, dimensions 64–1024.
	ModelDashScopeV3 = "text-embedding-v3"

	// ModelDashScopeV2 has fixed 1536 dimensions.
	ModelDashScopeV2 = "text-embedding-v2"

	// ModelDashScopeV1 has fixed 1536 dimensions.
	ModelDashScopeV1 = "text-embedding-v1"
)

const (
	dashScopeBaseURL      = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	dashScopeMaxBatch     = 10
	dashScopeDefaultDim   = 1024
	dashScopeDefaultModel = ModelDashScopeV4
)

// DashScope implements [Embedder] using Aliyun DashScope's OpenAI-compatible
// embedding API.
type DashScope struct {
	*compatClient
}

var _ Embedder = (*DashScope)(nil)

// NewDashScope creates a DashScope embedder.
func NewDashScope(apiKey string, opts ...Option) *DashScope {
	cfg := config{
		model:   dashScopeDefaultModel,
		dim:     dashScopeDefaultDim,
		baseURL: dashScopeBaseURL,
	}
	for _, o := range opts {
		o(&cfg)
	}
	fixed := cfg.model == ModelDashScopeV1 || cfg.model == ModelDashScopeV2
	if fixed && cfg.dim == dashScopeDefaultDim {
		cfg.dim = 1536
	}
	return &DashScope{newCompatClient(apiKey, cfg, dashScopeMaxBatch, !fixed)}
}
