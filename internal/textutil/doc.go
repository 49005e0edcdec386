// Package textutil holds small string helpers shared by the sync targets and
// exporters.
package textutil
