package domain

import "net/url"

// Deep link paths. The core emits these as plain strings and never routes.
const (
	CartPath    = "/cart"
	ProfilePath = "/profile"
)

// ProductPath links to a product detail view.
func ProductPath(id string) string {
	return "/product/" + url.PathEscape(id)
}

// VendorPath links to a pharmacy storefront.
func VendorPath(id string) string {
	return "/vendor/" + url.PathEscape(id)
}

// OrderPath links to the order list with one order highlighted.
func OrderPath(id string) string {
	return "/orders?highlight=" + url.QueryEscape(id)
}
