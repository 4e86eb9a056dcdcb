// Package storefront wires the client side of the handicraft marketplace:
// the session store, the cart store, the checkout handoff and the API
// gateway, all sharing one keyed storage backend.
//
// Data flows one way. A session change (restore, login, logout) re-selects
// the cart partition; user actions mutate the cart; checkout snapshots a
// subset of it; the order is placed through the gateway and the placed lines
// leave the cart.
//
// Basic Usage:
//
//	app, err := storefront.NewFromEnv(ctx)
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//
//	if err := app.Start(ctx); err != nil {
//		// storage could not be read; the app runs anonymous
//	}
//
//	if _, err := app.Session.Login(ctx, email, password); err != nil {
//		fmt.Println(app.Message("en", err))
//	}
//	_ = app.AddProductToCart(ctx, productID, 2)
//	order, err := app.Checkout.PlaceOrder(ctx, address)
//
// Configuration is read from the environment (and a .env file when present):
//
//	STOREFRONT_API_URL     base URL of the marketplace API
//	STOREFRONT_STORAGE     memory | file | redis | postgres | mongo
//	STOREFRONT_DATA_DIR    directory of the file backend
//	STOREFRONT_SECRET_KEY  hex AES-256 key sealing the stored credential
//	STOREFRONT_LANGUAGE    default language of user-facing messages
//	LOG_LEVEL, LOG_FORMAT  logger settings
//	HTTP_TIMEOUT           per-call API timeout, 0 for none
//
// plus the REDIS_*, PG_* and MONGODB_* settings of the chosen backend.
package storefront
