package main

// @title Parts Exchange Listing API
// @version 1.0
// @description Classifieds for spare parts: e-mail validated listings and cookie based wishlists

// @host localhost:8080
// @BasePath /

// @tag.name Listings
// @tag.description Listing submission, browsing and maintenance

// @tag.name Validation
// @tag.description E-mail validation links

// @tag.name Wishlist
// @tag.description Anonymous favourites keyed by the wishlist_id cookie
