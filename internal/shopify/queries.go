package shopify

// Storefront API

// VariantVisibilityQuery looks up a batch of variants on the read API. nodes(ids:)
// answers positionally: a null entry means the id is not (yet) visible.
const VariantVisibilityQuery = `
query VariantVisibility($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on ProductVariant {
      id
      availableForSale
    }
  }
}
`

// Admin API

// VariantInventoryQuery reads the backorder policy and per-location available stock.
const VariantInventoryQuery = `
query VariantInventory($id: ID!) {
  productVariant(id: $id) {
    id
    inventoryPolicy
    inventoryItem {
      tracked
      inventoryLevels(first: 50) {
        nodes {
          location {
            id
            name
          }
          quantities(names: ["available"]) {
            name
            quantity
          }
        }
      }
    }
  }
}
`

// ProductPublicationQuery reads product status, sales-channel publications and
// whether the product is published for one market country.
const ProductPublicationQuery = `
query ProductPublication($id: ID!, $country: CountryCode!) {
  product(id: $id) {
    id
    title
    status
    publishedInContext(context: {country: $country})
    resourcePublicationsV2(first: 20) {
      nodes {
        isPublished
        publication {
          id
          name
        }
      }
    }
  }
}
`
