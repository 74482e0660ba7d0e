// Package jwt signs and validates the RS256 access tokens issued by the job
// board.
//
// Every signed token carries a fresh jti, so two tokens issued in the same
// second for the same user still hash differently when revoked:
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "jobboard",
//	    ExpirationMins: 60,
//	})
//	token, err := svc.Sign(jwt.Claims{UserID: id, Email: email})
//	claims, err := svc.Validate(token)
package jwt
