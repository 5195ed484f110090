package shopify

// CartCreateMutation creates a storefront cart; its checkoutUrl is the redirect target.
const CartCreateMutation = `
mutation CartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {
      id
      checkoutUrl
      lines(first: 100) {
        nodes {
          quantity
          merchandise {
            ... on ProductVariant {
              id
            }
          }
        }
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

// CartBuyerIdentityUpdateMutation attaches buyer identity and a delivery address to a cart
const CartBuyerIdentityUpdateMutation = `
mutation CartBuyerIdentityUpdate($cartId: ID!, $buyerIdentity: CartBuyerIdentityInput!) {
  cartBuyerIdentityUpdate(cartId: $cartId, buyerIdentity: $buyerIdentity) {
    cart {
      id
    }
    userErrors {
      field
      message
      code
    }
  }
}
`
