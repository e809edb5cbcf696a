package periphclient

import (
	"context"
	"time"

	"github.com/komodore/core/internal/model"
)

// SystemInfo is the periodic health payload a Periphery host reports.
type SystemInfo struct {
	Version    string  `json:"version"`
	CpuPerc    float64 `json:"cpu_perc"`
	MemPerc    float64 `json:"mem_perc"`
	DiskPerc   float64 `json:"disk_perc"`
}

// GetSystemInfo fetches host vitals used by the Status Cache monitor loop
// (C2) for version-mismatch and resource-threshold alerting.
func (c *Client) GetSystemInfo(ctx context.Context) (SystemInfo, error) {
	var out SystemInfo
	err := c.Call(ctx, "GetSystemInfo", nil, &out)
	return out, err
}

// ContainerSummary mirrors the fields the monitor loop diffs per tick.
type ContainerSummary struct {
	Id        string            `json:"id"`
	Name      string            `json:"name"`
	Image     string            `json:"image"`
	Digest    string            `json:"digest"`
	State     model.ContainerState `json:"state"`
	Labels    map[string]string `json:"labels"`
}

// ListContainers fetches the full container list from the agent.
func (c *Client) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	var out []ContainerSummary
	err := c.Call(ctx, "ListContainers", nil, &out)
	return out, err
}

// ListComposeProjects fetches compose-project state from the agent.
func (c *Client) ListComposeProjects(ctx context.Context) ([]model.ComposeProject, error) {
	var out []model.ComposeProject
	err := c.Call(ctx, "ListComposeProjects", nil, &out)
	return out, err
}

// DeployStackParams is the request payload for DeployStack.
type DeployStackParams struct {
	StackName    string            `json:"stack_name"`
	FileContents string            `json:"file_contents"`
	Environment  map[string]string `json:"environment"`
}

// DeployStackResult reports the outcome of a compose up.
type DeployStackResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

// DeployStack requests Periphery run `compose up` for a stack (scenario A).
func (c *Client) DeployStack(ctx context.Context, p DeployStackParams) (DeployStackResult, error) {
	var out DeployStackResult
	err := c.Call(ctx, "DeployStack", p, &out)
	return out, err
}

// DestroyStackParams is the request payload for DestroyStack.
type DestroyStackParams struct {
	StackName      string `json:"stack_name"`
	RemoveOrphans  bool   `json:"remove_orphans"`
}

// DestroyStack requests `compose down` for a stack (spec §4.5 "Stack
// delete issues compose down --remove-orphans").
func (c *Client) DestroyStack(ctx context.Context, p DestroyStackParams) error {
	return c.Call(ctx, "DestroyStack", p, nil)
}

// PullParams requests an image pull without redeploying.
type PullParams struct {
	Image string `json:"image"`
}

// Pull requests Periphery pull an image.
func (c *Client) Pull(ctx context.Context, p PullParams) error {
	return c.Call(ctx, "Pull", p, nil)
}

// RunBuildParams is the request payload for a container image build.
type RunBuildParams struct {
	Dockerfile string            `json:"dockerfile"`
	ImageName  string            `json:"image_name"`
	ImageTag   string            `json:"image_tag"`
	BuildArgs  map[string]string `json:"build_args"`
}

// RunBuildResult reports the build outcome.
type RunBuildResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

// RunBuild requests an image build (scenario C).
func (c *Client) RunBuild(ctx context.Context, p RunBuildParams) (RunBuildResult, error) {
	var out RunBuildResult
	err := c.Call(ctx, "RunBuild", p, &out)
	return out, err
}

// PruneImagesParams scopes an image prune call (C12).
type PruneImagesParams struct{}

// PruneImages requests the agent prune dangling images.
func (c *Client) PruneImages(ctx context.Context) error {
	return c.Call(ctx, "PruneImages", PruneImagesParams{}, nil)
}

// RunRepoParams clones or pulls a git repo on the host.
type RunRepoParams struct {
	RepoUrl string `json:"repo_url"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
}

// RunRepoResult reports the latest commit observed after clone/pull.
type RunRepoResult struct {
	CommitHash    string `json:"commit_hash"`
	CommitMessage string `json:"commit_message"`
}

// CloneOrPullRepo requests a repo checkout/update.
func (c *Client) CloneOrPullRepo(ctx context.Context, p RunRepoParams) (RunRepoResult, error) {
	var out RunRepoResult
	err := c.Call(ctx, "CloneOrPullRepo", p, &out)
	return out, err
}

// DefaultTimeout is used for operations that don't carry a per-server
// configurable timeout of their own (spec §5).
const DefaultTimeout = 10 * time.Second
