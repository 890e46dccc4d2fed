package dto

type ClassifierInfo struct {
	Name         string
	Version      string
	Enabled      bool
	Connected    bool
	Binary       string
	Capabilities []string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Categories      []string
	Error           string
}

type LookupInput struct {
	URL   string
	Title string
}

// LookupOutput is the category a page resolves to. Source names the
// classifier that decided, or "rules" when none did.
type LookupOutput struct {
	URL        string
	Category   string
	Confidence float64
	Source     string
	Cached     bool
}
