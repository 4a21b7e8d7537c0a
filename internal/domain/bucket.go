package domain

// BucketKind is one of the four logical storage namespaces
type BucketKind string

const (
	BucketProducts      BucketKind = "products"
	BucketCategories    BucketKind = "categories"
	BucketUserAvatars   BucketKind = "user_avatars"
	BucketPaymentProofs BucketKind = "payment_proofs"
)

// BucketSet maps every logical bucket to its physical name in the object store.
// It is a value type; copies never alias.
type BucketSet struct {
	Products      string
	Categories    string
	UserAvatars   string
	PaymentProofs string
}

// DefaultBucketSet returns the bucket names the storefront is provisioned with
func DefaultBucketSet() BucketSet {
	return BucketSet{
		Products:      "product-images",
		Categories:    "category-images",
		UserAvatars:   "user-avatars",
		PaymentProofs: "payment-proofs",
	}
}

// Name returns the physical bucket name for kind
func (b BucketSet) Name(kind BucketKind) string {
	switch kind {
	case BucketProducts:
		return b.Products
	case BucketCategories:
		return b.Categories
	case BucketUserAvatars:
		return b.UserAvatars
	case BucketPaymentProofs:
		return b.PaymentProofs
	}
	return ""
}

// Lookup resolves a physical bucket name back to its kind.
// Empty names never match.
func (b BucketSet) Lookup(name string) (BucketKind, bool) {
	if name == "" {
		return "", false
	}
	for _, kind := range b.Kinds() {
		if b.Name(kind) == name {
			return kind, true
		}
	}
	return "", false
}

// Kinds lists the closed enumeration of logical buckets
func (b BucketSet) Kinds() []BucketKind {
	return []BucketKind{BucketProducts, BucketCategories, BucketUserAvatars, BucketPaymentProofs}
}
