package shopify

import (
	"fmt"
	"strings"
)

const gidPrefix = "gid://shopify/"

// VariantGID normalizes a variant reference to its GID form. Numeric ids are
// accepted and expanded; GIDs pass through unchanged.
func VariantGID(ref string) string {
	return toGID("ProductVariant", ref)
}

// ProductGID normalizes a product reference to its GID form.
func ProductGID(ref string) string {
	return toGID("Product", ref)
}

func toGID(resource, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, gidPrefix) {
		return ref
	}
	return fmt.Sprintf("%s%s/%s", gidPrefix, resource, ref)
}

// NumericID strips the GID prefix, returning the trailing numeric id.
func NumericID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}
