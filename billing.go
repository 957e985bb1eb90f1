package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inotherwords/internal/puzzleapi"
	"inotherwords/internal/types"
)

// subscribeHandler starts a checkout for extra guesses.
func (app *App) subscribeHandler(c *gin.Context) {
	app.billingRedirect(c, "checkout", app.API.CreateSubscription)
}

// billingPortalHandler opens the billing portal for an existing customer.
func (app *App) billingPortalHandler(c *gin.Context) {
	app.billingRedirect(c, "billing portal", app.API.BillingPortal)
}

func (app *App) billingRedirect(c *gin.Context, what string, create func(context.Context, puzzleapi.Caller) (string, error)) {
	ctx := c.Request.Context()
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	target, err := create(ctx, puzzleapi.Caller{Token: id.Token})
	if err != nil {
		logWarnCtx(ctx, "Failed to open %s for %s: %v", what, id.UserID, err)
		c.HTML(http.StatusBadGateway, "message.html", app.pageData(c, gin.H{
			"heading": "Billing",
			"message": ErrorSomethingWrong,
		}))
		return
	}
	app.forgetSubscription(id.UserID)
	logInfoCtx(ctx, "Redirecting %s to %s", id.UserID, what)
	redirect(c, target)
}

func (app *App) checkoutSuccessHandler(c *gin.Context) {
	app.checkoutResult(c, true)
}

func (app *App) checkoutCancelHandler(c *gin.Context) {
	app.checkoutResult(c, false)
}

// checkoutResult shows the outcome of a checkout. Transaction details are
// optional; the page renders without them.
func (app *App) checkoutResult(c *gin.Context, success bool) {
	ctx := c.Request.Context()
	data := gin.H{"success": success}

	if id, ok := identityFrom(c); ok {
		if success {
			app.forgetSubscription(id.UserID)
		}
		if txID := c.Query("transactionId"); txID != "" {
			tx, err := app.API.Transaction(ctx, puzzleapi.Caller{Token: id.Token}, txID)
			if err != nil {
				logWarnCtx(ctx, "Transaction %s unavailable: %v", txID, err)
			} else {
				data["transaction"] = tx
				data["amount"] = formatAmount(tx)
			}
		}
	}
	c.HTML(http.StatusOK, "checkout.html", app.pageData(c, data))
}

// formatAmount renders minor currency units, e.g. 499 USD as "4.99 USD".
func formatAmount(tx types.Transaction) string {
	sign := ""
	amount := tx.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(tx.Currency))
}
