// Package board detects which job-board provider a company uses.
package board

import "fmt"

// Descriptor identifies a company's job board. The set of variants is closed:
// Greenhouse, Lever, Workday, Direct and NotFound.
type Descriptor interface {
	// Provider names the variant, e.g. "greenhouse".
	Provider() string
	isDescriptor()
}

// Greenhouse is a board hosted at boards.greenhouse.io/{Slug}.
type Greenhouse struct{ Slug string }

// Lever is a board hosted at jobs.lever.co/{Slug}.
type Lever struct{ Slug string }

// Workday is a tenant site; Path is host plus site path,
// e.g. acme.wd5.myworkdayjobs.com/External.
type Workday struct{ Path string }

// Direct means no known provider was found and the URL is scraped as-is.
type Direct struct{ URL string }

// NotFound means there is nothing to harvest.
type NotFound struct{}

func (Greenhouse) Provider() string { return "greenhouse" }
func (Lever) Provider() string      { return "lever" }
func (Workday) Provider() string    { return "workday" }
func (Direct) Provider() string     { return "direct" }
func (NotFound) Provider() string   { return "none" }

func (Greenhouse) isDescriptor() {}
func (Lever) isDescriptor()      {}
func (Workday) isDescriptor()    {}
func (Direct) isDescriptor()     {}
func (NotFound) isDescriptor()   {}

func (d Greenhouse) String() string { return "greenhouse:" + d.Slug }
func (d Lever) String() string      { return "lever:" + d.Slug }
func (d Workday) String() string    { return "workday:" + d.Path }
func (d Direct) String() string     { return "direct:" + d.URL }
func (NotFound) String() string     { return "none" }

// Describe renders any descriptor for logs.
func Describe(d Descriptor) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return d.Provider()
}
