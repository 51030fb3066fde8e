package guard

// Navigator performs navigation immediately. Hosts adapt their router to it.
type Navigator interface {
	Push(href string)
	Replace(href string)
	Back()
}

// Click is an in-app link activation.
type Click struct {
	Href     string
	NewTab   bool // target=_blank or middle click
	Modified bool // ctrl, meta or shift held
}

// Router routes every navigation through a Guard before handing it to a
// Navigator. Each method reports whether the navigation ran immediately.
type Router struct {
	guard *Guard
	nav   Navigator
}

// NewRouter wraps nav with g.
func NewRouter(g *Guard, nav Navigator) *Router {
	return &Router{guard: g, nav: nav}
}

// Guard returns the underlying guard.
func (r *Router) Guard() *Guard {
	return r.guard
}

func (r *Router) Push(href string) bool {
	return r.guard.ConfirmNavigation(func() { r.nav.Push(href) })
}

func (r *Router) Replace(href string) bool {
	return r.guard.ConfirmNavigation(func() { r.nav.Replace(href) })
}

func (r *Router) Back() bool {
	return r.guard.ConfirmNavigation(r.nav.Back)
}

// Link handles a link click. New-tab and modified clicks leave the current
// page alone, so the browser handles them and the guard is not consulted.
func (r *Router) Link(c Click) bool {
	if c.NewTab || c.Modified {
		return true
	}
	return r.Push(c.Href)
}

// PopState handles a browser back/forward. It returns true when the pop may
// stand. On false the host must restore the current entry; the guard has
// parked a Back to replay once the user decides.
func (r *Router) PopState() bool {
	return r.guard.confirm(r.nav.Back, false)
}

// BeforeUnload reports whether the browser's generic unload prompt applies.
func (r *Router) BeforeUnload() bool {
	return r.guard.BeforeUnload()
}
