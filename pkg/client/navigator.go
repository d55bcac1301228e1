package client

import (
	"net/http"
	"sync"
)

// Navigator moves the user to another route of the application, such as the
// landing page after sign-out.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// NopNavigator ignores navigation. It suits command-line and background use.
var NopNavigator Navigator = NavigatorFunc(func(string) {})

// RedirectNavigator answers the current request with a 303 redirect to the
// route. It is meant for server-rendered handlers that build a Client per
// request around a cookie store. Only the first navigation answers the
// request; later ones are ignored.
func RedirectNavigator(w http.ResponseWriter, r *http.Request) Navigator {
	var once sync.Once
	return NavigatorFunc(func(route string) {
		once.Do(func() {
			http.Redirect(w, r, route, http.StatusSeeOther)
		})
	})
}
