package catalog

// Deduplicate reduces products to one entry per Key. The first occurrence of a
// key wins and the relative order of survivors is preserved, so the function is
// idempotent.
func Deduplicate(products []Product) []Product {
	if len(products) == 0 {
		return nil
	}
	seen := make(map[ProductKey]struct{}, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		key := p.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
