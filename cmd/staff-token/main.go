package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/libaas-store/storefront/internal/service"
)

func main() {
	userID := flag.String("user", "", "Staff user ID (required)")
	email := flag.String("email", "", "Staff email recorded in the token")
	roles := flag.String("roles", domain.RoleCatalogManager, "Comma separated roles (admin, catalog_manager)")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Println("Usage: staff-token -user <USER_ID> [-email <EMAIL>] [-roles admin,catalog_manager] [-ttl 12h]")
		fmt.Println("\nPrints a signed staff token for the admin API. JWT_SECRET must be set.")
		os.Exit(2)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		r = strings.TrimSpace(r)
		switch r {
		case "":
			continue
		case domain.RoleAdmin, domain.RoleCatalogManager:
			roleList = append(roleList, r)
		default:
			fmt.Fprintf(os.Stderr, "unknown role %q\n", r)
			os.Exit(2)
		}
	}

	cfg := config.LoadWithoutValidation()
	token, err := service.NewTokenService(cfg.JWT.Secret).IssueStaffToken(*userID, *email, roleList, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
