package bulk

// Category names a kind of synthetic event.
type Category string

// Known categories
const (
	CategoryQueries       Category = "queries"
	CategoryCache         Category = "cache"
	CategoryJobs          Category = "jobs"
	CategoryMail          Category = "mail"
	CategoryNotifications Category = "notifications"
	CategoryExceptions    Category = "exceptions"
	CategoryAll           Category = "all"
)

// Categories lists the concrete categories in the order "all" runs them.
var Categories = []Category{
	CategoryQueries,
	CategoryCache,
	CategoryJobs,
	CategoryMail,
	CategoryNotifications,
	CategoryExceptions,
}

// ParseCategory reports whether name is a known category, "all" included.
func ParseCategory(name string) (Category, bool) {
	c := Category(name)
	if c == CategoryAll {
		return c, true
	}
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Option keys understood by the producers.
const (
	OptSkipMail          = "skip-mail"
	OptSkipNotifications = "skip-notifications"
	OptSkipException     = "skip-exception"
	OptSkipFailingJob    = "skip-failing-job"
)

// Options are boolean flags keyed by option name. A nil Options is valid.
type Options map[string]bool

// Has reports whether the flag named key is set.
func (o Options) Has(key string) bool {
	return o[key]
}

// ProgressFunc is called once after each generated unit.
type ProgressFunc func()
