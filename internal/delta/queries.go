package delta

import "github.com/angelmondragon/ttd-workflows/pkg/enums"

const adGroupDeltaPath = "delta/adgroup/query/advertiser"

const adGroupBudgetsQuery = `
query AdGroupBudgets($ids: [ID!]!, $after: String, $first: Int) {
  adGroups(after: $after, first: $first, where: { id: { in: $ids } }) {
    nodes {
      id
      budget {
        currentFlightBudget
      }
      campaign {
        budgetMigrationStatus {
          currentBudgetingVersion
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const partnerAdvertisersQuery = `
query GetAdvertisers($partnerId: String!, $after: String, $first: Int) {
  advertisers(where: { partnerId: { eq: $partnerId } }, after: $after, first: $first) {
    nodes {
      id
    }
    pageInfo {
      endCursor
      hasNextPage
    }
  }
}`

// streamQuery holds the two queries of one entity delta stream: the minimum
// version probe and the page fetch. Both take $ids; the page fetch also
// takes $changeTrackingVersion.
type streamQuery struct {
	field          string
	minimumVersion string
	page           string
}

var streamQueries = map[enums.DeltaKind]streamQuery{
	enums.DeltaKindAdvertisers: {
		field: "advertiserDelta",
		minimumVersion: `
query GetAdvertisersDeltaMinimumVersion($ids: [ID!]!) {
  advertiserDelta(input: { changeTrackingVersion: 0, ids: $ids }) {
    currentMinimumTrackingVersion
  }
}`,
		page: `
query GetAdvertisersDelta($changeTrackingVersion: Long!, $ids: [ID!]!) {
  advertiserDelta(input: { changeTrackingVersion: $changeTrackingVersion, ids: $ids }) {
    nextChangeTrackingVersion
    moreAvailable
    advertisers {
      id
      name
      partner {
        id
      }
      isArchived
    }
  }
}`,
	},
	enums.DeltaKindCreatives: {
		field: "creativeDelta",
		minimumVersion: `
query GetCreativeDeltaMinimumVersion($ids: [ID!]!) {
  creativeDelta(input: { advertiser: { changeTrackingVersion: 0, ids: $ids } }) {
    currentMinimumTrackingVersion
  }
}`,
		page: `
query GetCreativeDelta($changeTrackingVersion: Long!, $ids: [ID!]!) {
  creativeDelta(input: { advertiser: { changeTrackingVersion: $changeTrackingVersion, ids: $ids } }) {
    nextChangeTrackingVersion
    moreAvailable
    creatives {
      advertiser {
        id
      }
      id
      name
      createdAt
      lastUpdatedAt
      auditStatuses {
        supplyVendorAuditStatuses {
          auditFeedback
          auditStatus
          auditStatusEnum
        }
        supplyVendorPublisherAuditStatuses {
          auditFeedback
          auditStatus
          auditStatusEnum
        }
      }
    }
  }
}`,
	},
	enums.DeltaKindTrackingTags: {
		field: "trackingTagDelta",
		minimumVersion: `
query GetTrackingTagDeltaMinimumVersion($ids: [ID!]!) {
  trackingTagDelta(input: { advertiser: { changeTrackingVersion: 0, ids: $ids } }) {
    currentMinimumTrackingVersion
  }
}`,
		page: `
query GetTrackingTagDelta($changeTrackingVersion: Long!, $ids: [ID!]!) {
  trackingTagDelta(input: { advertiser: { changeTrackingVersion: $changeTrackingVersion, ids: $ids } }) {
    nextChangeTrackingVersion
    moreAvailable
    trackingTags {
      id
      name
      type
      isArchived
      advertiser {
        id
      }
    }
  }
}`,
	},
}
