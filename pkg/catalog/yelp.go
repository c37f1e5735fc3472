package catalog

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Default returns the Yelp dataset catalog.
func Default() *Registry {
	return MustNew(
		Query{
			Name:        "business_by_city",
			Description: "Find businesses in a specific city",
			Relational: SQL(
				`SELECT business_id, name, stars, review_count FROM businesses WHERE city = $1 LIMIT 100`,
				"Berkeley",
			),
			Document: Find("businesses",
				bson.D{{Key: "city", Value: "Berkeley"}},
				bson.D{
					{Key: "_id", Value: 1},
					{Key: "name", Value: 1},
					{Key: "stars", Value: 1},
					{Key: "review_count", Value: 1},
				},
				100,
			),
		},
		Query{
			Name:        "top_rated_in_city",
			Description: "Highest rated businesses in a city by review volume",
			Relational: SQL(
				`SELECT business_id, name, stars, review_count FROM businesses
				 WHERE city = $1 AND stars >= $2 ORDER BY review_count DESC LIMIT 20`,
				"Philadelphia", 4.5,
			),
			Document: Aggregate("businesses", bson.A{
				bson.D{{Key: "$match", Value: bson.D{
					{Key: "city", Value: "Philadelphia"},
					{Key: "stars", Value: bson.D{{Key: "$gte", Value: 4.5}}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "review_count", Value: -1}}}},
				bson.D{{Key: "$limit", Value: 20}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "name", Value: 1},
					{Key: "stars", Value: 1},
					{Key: "review_count", Value: 1},
				}}},
			}),
		},
		Query{
			Name:        "business_count_by_city",
			Description: "Cities with the most businesses",
			Relational: SQL(
				`SELECT city, COUNT(*) AS n FROM businesses GROUP BY city ORDER BY n DESC LIMIT 10`,
			),
			Document: Aggregate("businesses", bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$city"},
					{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "n", Value: -1}}}},
				bson.D{{Key: "$limit", Value: 10}},
			}),
		},
		Query{
			Name:        "review_star_distribution",
			Description: "Number of reviews per star rating",
			Relational: SQL(
				`SELECT stars, COUNT(*) FROM reviews GROUP BY stars ORDER BY stars`,
			),
			Document: Aggregate("reviews", bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$stars"},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
			}),
		},
	)
}
