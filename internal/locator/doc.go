// Package locator turns heterogeneous control-plane batch entries into
// validated WorkItems.
//
// Each entry is classified into one RawRecord variant (a structured object, a
// bare URL, or an owner|locator|title string) and normalized by that
// variant. Entries that fail locator validation are reported as rejections;
// extraction itself never fails.
package locator
