package preflight

// Plan selects the checks Run performs before an index, compare or sync.
type Plan struct {
	RootsAccessible bool
	RootsWritable   bool
	PathNesting     bool
	RequireMounted  bool
}
