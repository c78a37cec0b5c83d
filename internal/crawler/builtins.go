package crawler

// GenericProfile harvests anchors with visible text and a nearby price.
// It answers for every host no other profile claims. It has no detail URL
// template, so it never mines IDs.
func GenericProfile() *Profile {
	return &Profile{
		Name:           "generic",
		CardSelectors:  []string{"a[href]"},
		MaxCards:       50,
		PriceContainer: "li, article, div",
		Card: FieldSelectors{
			Price: []string{"[class*='price']", ".price", ".amount", ".x-price-primary"},
		},
		Detail: FieldSelectors{
			Title: []string{"h1", "title"},
			Price: []string{"[itemprop=price]", "[class*='price']", ".price", ".amount"},
			Image: []string{"meta[property='og:image']", "img[itemprop=image]"},
		},
		PaginationSelectors: []string{
			"a[rel=next][href]",
			"a[aria-label='Next'][href]",
		},
	}
}

// EbayProfile covers the browse card layout, the legacy search layout and a
// bare item-link scan, in that order
func EbayProfile() *Profile {
	return &Profile{
		Name:  "ebay",
		Hosts: []string{"ebay"},
		Scope: []string{"ul.srp-results", "ul.b-list__items_nofooter", "div.brwrvr__item-results"},
		CardSelectors: []string{
			"li.brwrvr__item-card",
			"li.s-item",
			"a[href*='/itm/']",
		},
		SkipClasses:    []string{"s-item--placeholder"},
		PriceContainer: "li.s-item, li.brwrvr__item-card, div.s-item__info",
		Card: FieldSelectors{
			Link: []string{
				"a.brwrvr__item-card__image-link[href]",
				"a.bsig__title__wrapper[href]",
				"a.s-item__link[href]",
				"a[href*='/itm/']",
				"a[href*='/p/']",
			},
			Title: []string{
				"h3.bsig__title__text",
				".bsig__title__text",
				"h3.s-item__title",
				"span[role=heading]",
				".s-item__title",
				"h3[class*=title]",
			},
			Description: []string{".bsig__subTitle", ".s-item__subtitle"},
			Price:       []string{".bsig__price", ".s-item__price", ".x-price-primary"},
			Image: []string{
				"img.brwrvr__item-card__image",
				"img[data-originalsrc]",
				"img.s-item__image-img",
				"img",
			},
			AdInfo: []FieldRule{
				{Key: "Condition", Selectors: []string{".bsig__listingCondition", ".s-item__condition", ".SECONDARY_INFO"}},
				{Key: "Shipping", Selectors: []string{".bsig__logisticsCost", ".s-item__shipping", ".s-item__freeXDays"}},
				{Key: "Sold Count", Selectors: []string{".bsig__item-hotness", ".s-item__hotness", ".s-item__quantitySold"}},
				{Key: "Rating", Selectors: []string{".star-rating[aria-label]"}, Attr: "aria-label"},
				{Key: "Review Count", Selectors: []string{".bsig__product-review__count"}},
			},
			GeneralInfo: []FieldRule{
				{Key: "Subtitle", Selectors: []string{".bsig__subTitle", ".s-item__subtitle"}},
			},
		},
		Detail: FieldSelectors{
			Title:       []string{"h1.x-item-title__mainTitle", "h1#itemTitle", "h1[itemprop=name]", "h1.ux-textspans", "h1"},
			Description: []string{"#viTabs_0_is", ".vi-VR-cvipContent", ".x-item-description"},
			Price:       []string{".x-price-primary", "span#prcIsum", "span[itemprop=price]"},
			Location:    []string{".ux-seller-section__itemLocation", "#itemLocation"},
			Image:       []string{"#icImg", "img[itemprop=image]", ".ux-image-carousel-item img", ".img-wrapper img"},
			AdInfo: []FieldRule{
				{Key: "Condition", Selectors: []string{".x-item-condition-label", ".x-item-condition-text .ux-textspans", ".condText"}},
				{Key: "Shipping", Selectors: []string{"#fshippingCost", ".ux-labels-values--shipping .ux-labels-values__values", ".shipping-section"}},
				{Key: "Seller", Selectors: []string{".x-sellercard-atf__info__about-seller", ".seller-info__name", "#mbgLink"}},
				{Key: "Quantity", Selectors: []string{"#qtySubTxt", ".x-quantity__availability", ".qtyAvailable"}},
				{Key: "Brand", Selectors: []string{"[itemprop=brand]"}},
			},
			LabelValues: []LabelValueRule{
				{Container: ".ux-layout-section-evo, .ux-layout-section--features, #viTabs_0_is", Label: ".ux-labels-values__labels", Value: ".ux-labels-values__values", Target: TargetFeatures},
			},
			IDPatterns: []string{`itemId\s*:\s*'?(\d+)'?`, `"itemId"\s*:\s*"?(\d+)"?`},
		},
		IDPathPatterns:   []string{`/(?:itm|i|p)/(\d+)`},
		IDQueryPatterns:  []string{`(?:^|&)iid=(\d+)`},
		MarkupIDPatterns: []string{`ebay\.[a-z.]+/itm/(\d{9,15})`, `data-listingid=["'](\d{9,15})["']`},
		ScriptIDPatterns: []string{`"listingId"\s*:\s*"?(\d{9,15})`},
		OwnerAttrs:       []string{"data-listingid", "data-viewport-id"},
		OwnerHints:       []string{"div.s-item__wrapper", "div.s-item__info", "div[class*=item-card]"},
		// ebay.com item pages live under /itm/<id>
		DetailURLTemplate: "/itm/%s",
		DetailURLShape:    `/(?:itm|p)/\d+`,
		PaginationSelectors: []string{
			"a.pagination__next[href]",
			"a[rel=next][href]",
			"a[aria-label='Next page'][href]",
		},
	}
}

const (
	nineCard     = "AdPhoto_wrapper__gAOIH"
	nineSkeleton = "AdPhoto_wrapper__skeleton__rHjT7"
)

// NineNineNineProfile covers 999.md listings, which render most cards
// client-side and leave IDs in attributes and embedded JSON
func NineNineNineProfile() *Profile {
	return &Profile{
		Name:  "999.md",
		Hosts: []string{"999.md"},
		Scope: []string{
			"div.styles_adlist__3YsgA",
			"div[class*=adlist]",
			"div[data-sentry-component=AdList]",
		},
		CardSelectors: []string{"div." + nineCard},
		SkipClasses:   []string{nineSkeleton},
		Card: FieldSelectors{
			Link: []string{
				"a.AdPhoto_info__link__OwhY6[href]",
				"a[data-testid=photo-item-title][href]",
				"a.AdPhoto_image__BMixw[href]",
				"a[href^='/ro/']",
				"a[href^='/ru/']",
			},
			Title: []string{
				"a.AdPhoto_info__link__OwhY6",
				"a[data-testid=photo-item-title]",
				"[class*=AdPhoto_info__title]",
			},
			Price: []string{"span.AdPrice_price__2L3eA", "[class*=AdPrice_price]"},
			Image: []string{"img[src]", "img"},
			AdInfo: []FieldRule{
				{Key: "Fuel Type", Selectors: []string{"span.AdLabel_label__custom__kkxZo:has(i[class*=AdLabel_icon__engine])"}},
				{Key: "Transmission Type", Selectors: []string{"span.AdLabel_label__custom__kkxZo:has(i[class*=AdLabel_icon__transmission])"}},
				{Key: "Drive Type", Selectors: []string{"span.AdLabel_only__text__38l4V"}},
				{Key: "Odometer", Selectors: []string{"span.AdPrice_info__LYNmc"}},
				{Key: "First Payment", Selectors: []string{"span.AdPrice_first__payment__O_ljR"}},
				{Key: "Product ID", Selectors: []string{
					"span[data-testid=ad-favorites][data-id]",
					"span[data-testid=add-booster-ad-favorites][data-id]",
				}, Attr: "data-id"},
			},
		},
		Detail: FieldSelectors{
			Title:       []string{"h1[itemprop=name]", "header h1", "h1"},
			Description: []string{"[itemprop=description]", "div[class*=description]"},
			Price:       []string{"[itemprop=price]", "span[class*=price__value]", "[class*='price']"},
			Location:    []string{"[itemprop=address]", "[class*=region]", "dl.adPage__aside__region"},
			Image:       []string{"meta[property='og:image']", "img[itemprop=image]"},
			LabelValues: []LabelValueRule{
				{Container: "div.adPage__content__features, div[class*=features]", Label: "span.adPage__content__features__key, [class*=features__key]", Value: "span.adPage__content__features__value, [class*=features__value]", Target: TargetFeatures},
				{Container: "div.adPage__aside__stats, div[class*=aside__stats]", Label: "[class*=__key]", Value: "[class*=__value]", Target: TargetGeneralInfo},
			},
		},
		IDPathPatterns: []string{`^/(?:ro|ru)/(\d{6,12})(?:$|[^\d])`},
		MarkupIDPatterns: []string{
			`/(?:ro|ru)/(\d{6,12})(?:[^\d]|$)`,
			`data-adid=["'](\d{6,12})["']`,
			`data-id=["'](\d{6,12})["']`,
		},
		ScriptIDPatterns: []string{
			`"adid"\s*:\s*"?(\d{6,12})`,
			`["']id["']\s*[:=]\s*["']?(\d{6,12})`,
		},
		OwnerAttrs: []string{"data-adid", "data-id"},
		OwnerHints: []string{"div[class*=AdPhoto_wrapper]", "div[data-index]"},
		// /ru/<id> and /ro/<id> are the same ad
		DetailURLTemplate:    "/ro/%s",
		CanonicalDetailPaths: true,
		DetailURLShape:       `/(?:ro|ru)/\d+`,
		PaginationSelectors:  []string{"nav.paginator > ul > li > a[href]"},
	}
}
