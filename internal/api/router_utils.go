package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// PrintRoutes writes every route registered in the router to w
func PrintRoutes(w io.Writer, r *mux.Router) error {
	fmt.Fprintln(w, "=== Registered Routes ===")
	fmt.Fprintln(w, "METHOD\tPATH")
	fmt.Fprintln(w, "-------------------------------")

	err := r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return nil // prefix-only subrouters
		}

		methods, err := route.GetMethods()
		if err != nil || len(methods) == 0 {
			// Subrouter mount points carry no handler of their own
			if route.GetHandler() == nil {
				return nil
			}
			methods = []string{"ANY"}
		}

		fmt.Fprintf(w, "%s\t%s\n", strings.Join(methods, ","), pathTemplate)
		return nil
	})

	fmt.Fprintln(w, "==============================")
	return err
}

// PrintRoutesHandler returns a handler function to print all routes
func PrintRoutesHandler(router *mux.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		PrintRoutes(w, router)
	}
}
