package model

// ResourceKind enumerates the ten resource kinds the Resource Store Facade
// (C5) manages. Order matters: it is also the dependency order the Sync
// Reconciler (C9) applies declared state in — see internal/depsgraph.
type ResourceKind string

const (
	KindServer     ResourceKind = "Server"
	KindBuilder    ResourceKind = "Builder"
	KindBuild      ResourceKind = "Build"
	KindRepo       ResourceKind = "Repo"
	KindDeployment ResourceKind = "Deployment"
	KindStack      ResourceKind = "Stack"
	KindProcedure  ResourceKind = "Procedure"
	KindAction     ResourceKind = "Action"
	KindAlerter    ResourceKind = "Alerter"
	KindSync       ResourceKind = "Sync"
)

// AllKinds lists every resource kind in Sync apply order (§4.9 step 4:
// Server -> Builder -> Build/Repo -> Deployment/Stack/Procedure/Action/
// Alerter -> Sync).
func AllKinds() []ResourceKind {
	return []ResourceKind{
		KindServer, KindBuilder, KindBuild, KindRepo,
		KindDeployment, KindStack, KindProcedure, KindAction, KindAlerter,
		KindSync,
	}
}

// ResourceTarget identifies a single resource: its kind plus its id.
// Used as the Update.target, Alert.target and scheduler-table key.
type ResourceTarget struct {
	Kind ResourceKind `json:"kind"`
	Id   string       `json:"id"`
}

func (t ResourceTarget) String() string {
	return string(t.Kind) + "|" + t.Id
}
