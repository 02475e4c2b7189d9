// Package catalog provides the product catalog and order service behind the
// storefront API.
//
// A Service orchestrates a Repository (products, categories, orders), a
// primary BlobStore holding product images, and a media resolver that turns
// stored image references into short-lived signed URLs. Products are stored
// with their image object key; clients always receive ProductView values whose
// ImageURL has been resolved for the current instant.
//
// Image Release
//
// Uploaded images carry a ReleaseDate metadata entry. Until that instant the
// resolver hands out a shared placeholder image instead of the real one.
// Uploading an image stamps ReleaseDate with the upload time plus the
// configured release delay (five days unless overridden).
//
// Repositories (memory, Postgres) live under repo/ and blob stores (memory,
// filesystem, S3) under storage/.
package catalog
