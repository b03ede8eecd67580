package redis

import "github.com/redis/go-redis/v9"

// KEYS[1] session, KEYS[2] user index
// ARGV[1] record JSON, ARGV[2] ttl ms, ARGV[3] session key
//
// PTTL is -1 for an index without expiry and -2 for a missing one, both
// below any positive ttl.
var registerSessionScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[2]) then
  redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return 1
`)

// KEYS[1] session
// ARGV[1] last_activity_at
var touchSessionScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local rec = cjson.decode(raw)
rec['last_activity_at'] = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(rec), 'KEEPTTL')
return 1
`)

// KEYS[1] active pointer, KEYS[2] new challenge, KEYS[3] expiry zset
// ARGV[1] new id, ARGV[2] ttl ms, ARGV[3] expires_at ms, ARGV[4] challenge
// key prefix, ARGV[5..] hash field/value pairs
var createChallengeScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if prev then
  local prevKey = ARGV[4] .. prev
  if redis.call('EXISTS', prevKey) == 1 then
    redis.call('HINCRBY', prevKey, 'used', 1)
  end
end
redis.call('HSET', KEYS[2], unpack(ARGV, 5))
redis.call('PEXPIRE', KEYS[2], ARGV[2])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS[1] challenge
// ARGV[1] field
//
// Returns -1 when the challenge is gone so HINCRBY never recreates it.
var incrFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)
