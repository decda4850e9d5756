package redisstore

// Lua scripts keep set-valued field updates and batched commits atomic on the
// server. Set fields are stored as JSON arrays; an emptied set is written as
// the literal "[]" because cjson encodes empty tables as objects.

const setUnionScript = `
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local arr = {}
local seen = {}
if cur and cur ~= '' then
  arr = cjson.decode(cur)
  for _, v in ipairs(arr) do
    seen[v] = true
  end
end
local changed = false
for i = 2, #ARGV do
  local m = ARGV[i]
  if not seen[m] then
    seen[m] = true
    arr[#arr + 1] = m
    changed = true
  end
end
if changed then
  if #arr == 0 then
    redis.call('HSET', KEYS[1], ARGV[1], '[]')
  else
    redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(arr))
  end
end
return #arr
`

const setDifferenceScript = `
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur or cur == '' then
  return 0
end
local arr = cjson.decode(cur)
local drop = {}
for i = 2, #ARGV do
  drop[ARGV[i]] = true
end
local out = {}
for _, v in ipairs(arr) do
  if not drop[v] then
    out[#out + 1] = v
  end
end
if #out ~= #arr then
  if #out == 0 then
    redis.call('HSET', KEYS[1], ARGV[1], '[]')
  else
    redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(out))
  end
end
return #out
`

const batchScript = `
local writes = cjson.decode(ARGV[1])
for _, w in ipairs(writes) do
  for field, value in pairs(w.fields) do
    redis.call('HSET', w.key, field, value)
  end
  if w.index then
    for _, ix in ipairs(w.index) do
      redis.call('ZADD', ix.key, ix.score, ix.member)
    end
  end
end
return #writes
`
