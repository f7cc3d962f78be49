// Package apollo models the normalized Apollo cache that Next.js pages embed
// in their __NEXT_DATA__ payload.
//
// The cache is a flat object keyed by cache IDs such as "Book:kca://book/..."
// or "Contributor:kca://author/...". Entries point at each other through
// reference markers of the form {"__ref": "<key>"}. A Store keeps every entry
// in the order the page serialized them and resolves markers on demand; it
// never mutates or copies the parsed nodes.
package apollo
