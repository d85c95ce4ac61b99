// Package exponea implements the services behind the Exponea webhooks:
// granting coupon tickets in bulk and updating newsletter consent. Both
// validate the raw payload first and hand the work to background jobs.
package exponea
