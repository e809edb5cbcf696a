package resources

import (
	"fmt"

	"github.com/komodore/core/internal/model"
)

// validateConfig is the kind-specific `validate_create_config`/
// `validate_update_config` hook spec §4.5 names. It decodes raw into the
// kind's typed Config and enforces the handful of required-field
// invariants a complete create/update must satisfy before Create/Update
// writes the Resource.
func validateConfig(kind model.ResourceKind, raw model.RawConfig) error {
	switch kind {
	case model.KindServer:
		cfg, err := DecodeConfig[model.ServerConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.Address == "" {
			return badRequest(fmt.Errorf("server config requires address"))
		}
	case model.KindBuilder:
		if _, err := DecodeConfig[model.BuilderConfig](raw); err != nil {
			return badRequest(err)
		}
	case model.KindBuild:
		cfg, err := DecodeConfig[model.BuildConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.BuilderId == "" {
			return badRequest(fmt.Errorf("build config requires builder_id"))
		}
		if cfg.ImageName == "" {
			return badRequest(fmt.Errorf("build config requires image_name"))
		}
	case model.KindRepo:
		cfg, err := DecodeConfig[model.RepoConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.ServerId == "" {
			return badRequest(fmt.Errorf("repo config requires server_id"))
		}
		if cfg.Repo == "" {
			return badRequest(fmt.Errorf("repo config requires repo"))
		}
	case model.KindDeployment:
		cfg, err := DecodeConfig[model.DeploymentConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.ServerId == "" {
			return badRequest(fmt.Errorf("deployment config requires server_id"))
		}
		if cfg.Image == "" {
			return badRequest(fmt.Errorf("deployment config requires image"))
		}
	case model.KindStack:
		cfg, err := DecodeConfig[model.StackConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.ServerId == "" {
			return badRequest(fmt.Errorf("stack config requires server_id"))
		}
		if cfg.FileContents == "" && cfg.RepoId == "" {
			return badRequest(fmt.Errorf("stack config requires file_contents or repo_id"))
		}
	case model.KindProcedure:
		cfg, err := DecodeConfig[model.ProcedureConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if len(cfg.Stages) == 0 {
			return badRequest(fmt.Errorf("procedure config requires at least one stage"))
		}
	case model.KindAction:
		cfg, err := DecodeConfig[model.ActionConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.Script == "" {
			return badRequest(fmt.Errorf("action config requires script"))
		}
	case model.KindAlerter:
		cfg, err := DecodeConfig[model.AlerterConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.Endpoint == "" {
			return badRequest(fmt.Errorf("alerter config requires endpoint"))
		}
	case model.KindSync:
		cfg, err := DecodeConfig[model.SyncConfig](raw)
		if err != nil {
			return badRequest(err)
		}
		if cfg.FileContents == "" && cfg.RepoId == "" && cfg.ResourcePath == "" {
			return badRequest(fmt.Errorf("sync config requires file_contents, repo_id, or resource_path"))
		}
	default:
		return badRequest(fmt.Errorf("unknown resource kind %q", kind))
	}
	return nil
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", model.ErrBadRequest, err)
}

// creatorSpecificSet is the kind's "creator specific" set granted to the
// creating user alongside Write level (spec §4.5 create: "set creator
// permission to Write plus kind's 'creator specific' set"). Kinds with no
// exec-style side channel grant no extra specifics.
func creatorSpecificSet(kind model.ResourceKind) model.SpecificSet {
	switch kind {
	case model.KindServer:
		return model.NewSpecificSet(model.SpecificTerminal, model.SpecificInspect, model.SpecificProcesses)
	case model.KindDeployment, model.KindStack:
		return model.NewSpecificSet(model.SpecificAttach, model.SpecificLogs, model.SpecificInspect)
	default:
		return model.NewSpecificSet()
	}
}
