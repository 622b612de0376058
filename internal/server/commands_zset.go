package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/kvserver/kvserver/internal/geo"
	"github.com/kvserver/kvserver/internal/resp"
	"github.com/kvserver/kvserver/internal/store/zsetstore"
)

func init() {
	register("ZADD", cmdZAdd)
	register("ZREM", cmdZRem)
	register("ZRANK", cmdZRank)
	register("ZRANGE", cmdZRange)
	register("ZSCORE", cmdZScore)
	register("ZCARD", cmdZCard)
	register("GEOADD", cmdGeoAdd)
	register("GEOPOS", cmdGeoPos)
	register("GEODIST", cmdGeoDist)
	register("GEOSEARCH", cmdGeoSearch)
}

func notFloat() resp.Reply {
	return resp.Error("ERR value is not a valid float")
}

func cmdZAdd(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 4 || (len(cmd)-2)%2 != 0 {
		return wrongArity("ZADD")
	}
	pairs := make(map[string]float64, (len(cmd)-2)/2)
	for i := 2; i < len(cmd); i += 2 {
		score, err := strconv.ParseFloat(string(cmd[i]), 64)
		if err != nil {
			return notFloat()
		}
		pairs[string(cmd[i+1])] = score
	}
	n := c.srv.Stores.ZSet.Add(string(cmd[1]), pairs)
	return resp.Integer(n)
}

func cmdZRem(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("ZREM")
	}
	if c.srv.Stores.ZSet.Rem(string(cmd[1]), string(cmd[2])) {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func cmdZRank(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("ZRANK")
	}
	rank, ok := c.srv.Stores.ZSet.Rank(string(cmd[1]), string(cmd[2]))
	if !ok {
		return resp.NullBulk
	}
	return resp.Integer(rank)
}

func cmdZRange(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 4 {
		return wrongArity("ZRANGE")
	}
	start, err1 := strconv.Atoi(string(cmd[2]))
	end, err2 := strconv.Atoi(string(cmd[3]))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	pairs := c.srv.Stores.ZSet.Range(string(cmd[1]), start, end)
	out := make(resp.Array, len(pairs))
	for i, p := range pairs {
		out[i] = resp.BulkString(p.Member)
	}
	return out
}

func cmdZScore(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("ZSCORE")
	}
	score, ok := c.srv.Stores.ZSet.Score(string(cmd[1]), string(cmd[2]))
	if !ok {
		return resp.NullBulk
	}
	return resp.BulkString(zsetstore.FormatScore(score))
}

func cmdZCard(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("ZCARD")
	}
	return resp.Integer(c.srv.Stores.ZSet.Card(string(cmd[1])))
}

func cmdGeoAdd(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 5 || (len(cmd)-2)%3 != 0 {
		return wrongArity("GEOADD")
	}
	pairs := make(map[string]float64, (len(cmd)-2)/3)
	for i := 2; i < len(cmd); i += 3 {
		lon, err1 := strconv.ParseFloat(string(cmd[i]), 64)
		lat, err2 := strconv.ParseFloat(string(cmd[i+1]), 64)
		if err1 != nil || err2 != nil {
			return notFloat()
		}
		if !geo.ValidLon(lon) || !geo.ValidLat(lat) {
			return resp.Error("ERR invalid longitude,latitude pair")
		}
		pairs[string(cmd[i+2])] = float64(geo.Encode(lon, lat))
	}
	n := c.srv.Stores.ZSet.Add(string(cmd[1]), pairs)
	return resp.Integer(n)
}

func cmdGeoPos(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 3 {
		return wrongArity("GEOPOS")
	}
	key := string(cmd[1])
	out := make(resp.Array, 0, len(cmd)-2)
	for _, m := range cmd[2:] {
		score, ok := c.srv.Stores.ZSet.Score(key, string(m))
		if !ok {
			out = append(out, resp.NullArray)
			continue
		}
		lon, lat := geo.Decode(uint64(score))
		out = append(out, resp.Array{
			resp.BulkString(zsetstore.FormatScore(lon)),
			resp.BulkString(zsetstore.FormatScore(lat)),
		})
	}
	return out
}

func cmdGeoDist(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 4 && len(cmd) != 5 {
		return wrongArity("GEODIST")
	}
	key := string(cmd[1])
	s1, ok1 := c.srv.Stores.ZSet.Score(key, string(cmd[2]))
	s2, ok2 := c.srv.Stores.ZSet.Score(key, string(cmd[3]))
	if !ok1 || !ok2 {
		return resp.NullBulk
	}

	unit := "m"
	if len(cmd) == 5 {
		unit = strings.ToLower(string(cmd[4]))
	}
	factor, ok := geo.UnitToMeters(unit)
	if !ok {
		return resp.Error("ERR unsupported unit provided. please use m, km, ft, mi")
	}

	lon1, lat1 := geo.Decode(uint64(s1))
	lon2, lat2 := geo.Decode(uint64(s2))
	dist := geo.HaversineMeters(lon1, lat1, lon2, lat2) / factor
	return resp.BulkString(zsetstore.FormatScore(dist))
}

func cmdGeoSearch(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 8 ||
		!strings.EqualFold(string(cmd[2]), "FROMLONLAT") ||
		!strings.EqualFold(string(cmd[5]), "BYRADIUS") {
		return resp.Error("ERR syntax error")
	}
	lon, err1 := strconv.ParseFloat(string(cmd[3]), 64)
	lat, err2 := strconv.ParseFloat(string(cmd[4]), 64)
	radius, err3 := strconv.ParseFloat(string(cmd[6]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return notFloat()
	}
	unit := strings.ToLower(string(cmd[7]))
	factor, ok := geo.UnitToMeters(unit)
	if !ok {
		return resp.Error("ERR unsupported unit provided. please use m, km, ft, mi")
	}
	radiusMeters := radius * factor

	members := c.srv.Stores.ZSet.AllMembers(string(cmd[1]))
	out := resp.Array{}
	for _, p := range members {
		mlon, mlat := geo.Decode(uint64(p.Score))
		if geo.HaversineMeters(lon, lat, mlon, mlat) <= radiusMeters {
			out = append(out, resp.BulkString(p.Member))
		}
	}
	return out
}
